// Package html extracts readable text from HTML pages.
// Scripts, styles and other non-content blocks are dropped, block elements
// become line breaks and table cells are separated with a pipe.
package html
