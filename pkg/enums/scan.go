package enums

import "fmt"

// ScanDirection maps to the scan_direction enum in Postgres.
type ScanDirection string

const (
	ScanOut ScanDirection = "out"
	ScanIn  ScanDirection = "in"
)

// IsValid reports whether the value matches the canonical scan_direction enum.
func (d ScanDirection) IsValid() bool {
	return d == ScanOut || d == ScanIn
}

// ParseScanDirection converts raw input into ScanDirection.
func ParseScanDirection(value string) (ScanDirection, error) {
	switch ScanDirection(value) {
	case ScanOut:
		return ScanOut, nil
	case ScanIn:
		return ScanIn, nil
	}
	return "", fmt.Errorf("invalid scan direction %q", value)
}

// TagKind states what a physical tag resolves to.
type TagKind string

const (
	TagItem   TagKind = "item"
	TagBundle TagKind = "bundle"
)

// IsValid reports whether the value matches the canonical tag_kind enum.
func (k TagKind) IsValid() bool {
	return k == TagItem || k == TagBundle
}

// BundleMode selects how a bundle scan is applied.
type BundleMode string

const (
	BundleExplode BundleMode = "explode"
	BundleWhole   BundleMode = "whole"
)

// IsValid reports whether the value matches the canonical bundle_mode enum.
func (m BundleMode) IsValid() bool {
	return m == BundleExplode || m == BundleWhole
}

// ParseBundleMode converts raw input into BundleMode.
func ParseBundleMode(value string) (BundleMode, error) {
	switch BundleMode(value) {
	case BundleExplode:
		return BundleExplode, nil
	case BundleWhole:
		return BundleWhole, nil
	}
	return "", fmt.Errorf("invalid bundle mode %q", value)
}

// MovementType classifies reconciled stock movements.
type MovementType string

const (
	MovementCheckout     MovementType = "checkout"
	MovementReturn       MovementType = "return"
	MovementUnplannedOut MovementType = "unplanned_out"
	MovementComposite    MovementType = "composite"
)

// IsValid reports whether the value matches the canonical movement_type enum.
func (m MovementType) IsValid() bool {
	switch m {
	case MovementCheckout, MovementReturn, MovementUnplannedOut, MovementComposite:
		return true
	}
	return false
}
