package invocationlog

import "github.com/araddon/dateparse"

// dateparseParse parses a flexible date/time string for the
// dashboard-facing rollup API, accepting whatever unambiguous timestamp
// format a caller supplies.
var dateparseParse = dateparse.ParseAny
