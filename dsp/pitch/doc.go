// Package pitch maps frequencies onto a musical scale.
//
// A [Scale] is one octave of named notes given as cents offsets from a base
// frequency. [Scale.Map] finds the nearest note to a frequency in any octave
// and reports the signed deviation in cents. [SelectFundamental] picks the
// candidate frequency that best matches the scale.
package pitch
