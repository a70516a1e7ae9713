// Package conv provides checked integer conversions for values read from
// untrusted input such as wire headers, catalog files and page frames.
//
// For conversions that are safe by construction (loop indices, bounded
// counters) use a plain type conversion.
package conv
