// Package tabular extracts text from spreadsheets and delimited files.
//
// Every sheet is rendered as a block:
//
//	Sheet: <name>
//	<header cells joined by " | ">
//	<row cells joined by " | ">
//	...
//
// Only the first MaxSampleRows data rows of each sheet are kept, which keeps
// very large exports from dominating the index with repetitive rows.
package tabular
