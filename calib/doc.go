// Package calib loads the per-probe calibration artifacts consumed by
// the frequency fitters: phase templates (CSV, one row per probe),
// fit-range templates (JSON records with probe id and window bounds) and
// the legacy fixed-layout binary settings blob carrying templates for
// all 378 probes of a fixed-probe station.
//
// The binary adapter only decodes the record; interpretation stays with
// the callers.
package calib
