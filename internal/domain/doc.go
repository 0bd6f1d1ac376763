// Package domain models Berlin wastewater surveillance samples and implements
// the aggregation pipeline behind the dashboard's time series.
//
// # Data Source
//
// Samples originate from the public health-monitoring API operated for the
// Berlin wastewater surveillance programme. Each record describes one
// extraction at one treatment plant and carries the raw laboratory results
// nested inside it. The upstream export is noisy by nature: dates arrive as
// free-text strings, test results and parameters may be absent, and numeric
// values are sometimes encoded with a German comma decimal separator.
//
// # Feed Conventions
//
// Extraction date:
//
//	dd.mm.yyyy, e.g. "01.02.2022" = 1 February 2022.
//	Malformed dates occur in the feed; affected samples are skipped with a
//	diagnostic rather than failing the whole aggregation.
//
// Test result names:
//
//	Free-text labels such as "SARS-CoV-2 N1" or "SARS-CoV-2 E-Gen". A result
//	contributes to the series only if its name contains "SARS-CoV-2" and does
//	not contain "Coronaviren". The latter marks the pan-family
//	cross-reactive assay, which also amplifies seasonal coronaviruses and
//	would inflate the pathogen-specific signal.
//
// Replicate parameters:
//
//	Quantitative replicates are parameters whose name starts with
//	"copy_number" (copy_number_1, copy_number_2, ...). Values arrive either
//	as JSON numbers or as strings like "173,5". Comma decimal separators are
//	normalized to periods before parsing; values that still fail to parse
//	are discarded silently.
//
// # Aggregation
//
// Per sample, each relevant test result is reduced to the mean of its
// replicate values (a test-level mean). The sample's point is the mean of
// its test-level means, with min/max recording their spread. Samples with no
// usable value produce no point.
//
// # Population Weighting
//
// The citywide composite series averages the three municipal treatment
// plants, weighted by the population of their catchment areas. Dates where
// only some plants reported are re-normalized over the reporting plants'
// weights instead of being dropped. See [WeightedComposite].
package domain
