package storage

import (
	"fmt"
)

// CalculateResourcePaths generates the resource URIs available for an ingested item.
// Sample page paths are included for the first and last page when the item has pages.
func CalculateResourcePaths(itemID int64, pageCount int) []string {
	resourcePaths := []string{
		fmt.Sprintf("item://%d", itemID),
		fmt.Sprintf("item://%d/chunks", itemID),
		fmt.Sprintf("item://%d/pages", itemID),
	}

	if pageCount > 0 {
		resourcePaths = append(resourcePaths, fmt.Sprintf("item://%d/pages/1", itemID))
		if pageCount > 1 {
			resourcePaths = append(resourcePaths, fmt.Sprintf("item://%d/pages/%d", itemID, pageCount))
		}
	}

	// Template for accessing any page label
	resourcePaths = append(resourcePaths, fmt.Sprintf("item://%d/pages/{pdfPage}", itemID))

	return resourcePaths
}
