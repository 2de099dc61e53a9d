package reconcile

import (
	"crypto/sha1"
	"fmt"

	"github.com/cnf/structhash"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
)

// datasetsFingerprint hashes the dataset list so two runs over the same
// DAC shape can be compared at a glance without diffing full dataset JSON.
func datasetsFingerprint(datasets []dacmodel.Dataset) string {
	return fmt.Sprintf("%x", sha1.Sum(structhash.Dump(datasets, 1)))
}
