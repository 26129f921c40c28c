package tierq

import "fmt"

// MaxRegionDepth is the finest specificity depth a geospatial model can
// have. Depth 0 is the coarsest.
const MaxRegionDepth = 2

// RegionKey is the stable identity key of a geospatial model: a region
// identifier plus a specificity depth. Deferrable retraining submissions
// are deduped by this key.
type RegionKey struct {
	Region string
	Depth  int
}

// Validate checks the key's fields.
func (k RegionKey) Validate() error {
	if k.Region == "" {
		return fmt.Errorf("region is empty")
	}
	if k.Depth < 0 || k.Depth > MaxRegionDepth {
		return fmt.Errorf("depth must be between 0 and %d, got %d", MaxRegionDepth, k.Depth)
	}
	return nil
}

// Key returns the canonical string form, used both as the secondary-queue
// job name and as the storage key.
func (k RegionKey) Key() string {
	return fmt.Sprintf("%s@%d", k.Region, k.Depth)
}

func (k RegionKey) String() string {
	return k.Key()
}
