// Package ui provides headless models of the controls that device bindings
// drive: sliders and dropdowns, plus a serial Queue that plays the role of
// the UI thread. All control mutations made by bindings are posted to the
// Queue, so observers see changes in the order they were made.
package ui
