// Package statfile implements the public entry point (§6): Open a
// SAS7BDAT/.dta/.sav/.zsav file, inspect its schema and metadata, and
// pull row batches through the streaming iterator (§4.7) or a direct
// range read (§4.6). Every per-format decoder lives under internal/;
// this package is the only one a caller imports.
package statfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/colstat/statread/errs"
	"github.com/colstat/statread/format"
)

// Format identifies which of the three supported file families a path
// names (§4.7 "format dispatch").
type Format = format.FileFormat

const (
	FormatUnknown = format.FormatUnknown
	FormatSAS     = format.FormatSAS
	FormatStata   = format.FormatStata
	FormatSPSS    = format.FormatSPSS
)

// DetectFormat maps a file extension to its Format (§4.7): .sas7bdat/
// .sas7bcat -> SAS, .dta -> Stata, .sav/.zsav -> SPSS. An unrecognized
// extension is a hard failure rather than a guess.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sas7bdat", ".sas7bcat":
		return FormatSAS, nil
	case ".dta":
		return FormatStata, nil
	case ".sav", ".zsav":
		return FormatSPSS, nil
	default:
		return FormatUnknown, fmt.Errorf("statfile: %w: %q", errs.ErrUnknownFormat, path)
	}
}

// ScanOptions is the configuration every Open call resolves against
// (§6 "Scan options"), populated by functional Option values in the
// teacher's NumericEncoderOption style (an Option mutates one target
// struct rather than the teacher's generic options.Option[T], since
// statfile only ever configures one type).
type ScanOptions struct {
	format    Format
	formatSet bool

	threads   int
	chunkSize int

	missingStringAsNull  bool
	userMissingAsNull    bool
	valueLabelsAsStrings bool
	preserveOrder        bool
}

// defaultScanOptions mirrors §6's stated defaults: both missing-as-null
// flags and value-labels-as-strings default true, preserve_order and an
// explicit format default false/unset.
func defaultScanOptions() *ScanOptions {
	return &ScanOptions{
		missingStringAsNull:  true,
		userMissingAsNull:    true,
		valueLabelsAsStrings: true,
	}
}

// Option configures a ScanOptions value; see With* below.
type Option func(*ScanOptions) error

// WithFormat bypasses extension-based detection (§6 "Accepted inputs:
// ... or supplied explicitly").
func WithFormat(f Format) Option {
	return func(o *ScanOptions) error {
		o.format = f
		o.formatSet = true

		return nil
	}
}

// WithThreads sets the worker pool size for the parallel range reader;
// n <= 0 resolves to the format default (§5).
func WithThreads(n int) Option {
	return func(o *ScanOptions) error {
		o.threads = n

		return nil
	}
}

// WithChunkSize sets the window size for the parallel range reader;
// n <= 0 resolves to rangereader.DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(o *ScanOptions) error {
		o.chunkSize = n

		return nil
	}
}

// WithMissingStringAsNull controls whether empty/all-space/declared-
// missing strings decode to null (default true).
func WithMissingStringAsNull(b bool) Option {
	return func(o *ScanOptions) error {
		o.missingStringAsNull = b

		return nil
	}
}

// WithUserMissingAsNull controls whether SPSS declared numeric missings
// decode to null (default true).
func WithUserMissingAsNull(b bool) Option {
	return func(o *ScanOptions) error {
		o.userMissingAsNull = b

		return nil
	}
}

// WithValueLabelsAsStrings controls whether a numeric column with an
// attached value-label set is emitted as String (default true).
func WithValueLabelsAsStrings(b bool) Option {
	return func(o *ScanOptions) error {
		o.valueLabelsAsStrings = b

		return nil
	}
}

// WithPreserveOrder requests the strict per-batch row-order guarantee
// described in §5 (the stitched frame is already always in file order;
// this only affects whether the streaming iterator itself may reorder
// batches relative to one another).
func WithPreserveOrder(b bool) Option {
	return func(o *ScanOptions) error {
		o.preserveOrder = b

		return nil
	}
}

func resolveOptions(opts []Option) (*ScanOptions, error) {
	o := defaultScanOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("statfile: option: %w", err)
		}
	}

	return o, nil
}
