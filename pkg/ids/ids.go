// Package ids validates the three opaque accession identifiers exchanged
// with the external DAC platform: DacId, DatasetId and UserAccessionId.
package ids

import (
	"fmt"
	"regexp"
)

var (
	dacIDPattern     = regexp.MustCompile(`^EGAC[0-9]{11}$`)
	datasetIDPattern = regexp.MustCompile(`^EGAD[0-9]{11}$`)
	userIDPattern    = regexp.MustCompile(`^EGAW[0-9]{11}$`)
)

// DacId is the accession identifier of a Data Access Committee.
type DacId string

// DatasetId is the accession identifier of a dataset.
type DatasetId string

// UserAccessionId is the accession identifier of a platform user.
type UserAccessionId string

// ParseDacId validates v against the DacId pattern (EGAC + 11 digits).
func ParseDacId(v string) (DacId, error) {
	if !dacIDPattern.MatchString(v) {
		return "", fmt.Errorf("invalid DacId %q: must match %s", v, dacIDPattern.String())
	}
	return DacId(v), nil
}

// ParseDatasetId validates v against the DatasetId pattern (EGAD + 11 digits).
func ParseDatasetId(v string) (DatasetId, error) {
	if !datasetIDPattern.MatchString(v) {
		return "", fmt.Errorf("invalid DatasetId %q: must match %s", v, datasetIDPattern.String())
	}
	return DatasetId(v), nil
}

// ParseUserAccessionId validates v against the UserAccessionId pattern
// (EGAW + 11 digits).
func ParseUserAccessionId(v string) (UserAccessionId, error) {
	if !userIDPattern.MatchString(v) {
		return "", fmt.Errorf("invalid UserAccessionId %q: must match %s", v, userIDPattern.String())
	}
	return UserAccessionId(v), nil
}
