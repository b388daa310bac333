// Package extractors converts uploaded bytes into plain text for indexing.
//
// Dispatch is purely by declared extension. Each sub-package owns one
// strategy:
//
//   - plaintext: encoded text (txt)
//   - markdown: encoded text with markup stripped (md)
//   - html: embedded markup (html, htm)
//   - docx: zipped WordprocessingML (docx, and doc files saved as OOXML)
//   - tabular: header plus row samples (csv, xlsx, xls)
//   - pdf: page-oriented binary, parsed in-process (pdf)
//
// Extractors are registered with the Registry at startup.
package extractors
