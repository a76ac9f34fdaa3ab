// Package viewport models the engine's visible screen.
//
// The engine draws a grid of cells covering only the lines currently on
// screen. A Model holds the latest grid and reconstructs line text from it.
// Lines outside the viewport are unavailable: the model never guesses their
// content.
//
// # Cells
//
// Each cell carries the text drawn at one screen column. A wide character
// (for example CJK) occupies two columns; the second column is a
// continuation cell with empty text and zero width. Line reconstruction
// skips continuation cells and trims the padding the engine draws after the
// end of a line.
//
// # Thread Safety
//
// Model is safe for concurrent use. The grid is replaced wholesale on every
// redraw and readers always see a complete grid.
package viewport
