package drive

import (
	"sort"
	"strings"

	"github.com/arborlabs/arbor/models"
)

// SortMode selects the ordering of a listing. Name sorts ascending,
// case-folded; the time and size modes sort descending so the newest or
// largest entries come first.
type SortMode string

const (
	SortByName     SortMode = "name"
	SortByCreated  SortMode = "createdAt"
	SortByModified SortMode = "modifiedAt"
	SortBySize     SortMode = "size"
)

// SortNodes orders nodes in place. Unknown modes fall back to name order.
func SortNodes(list []models.Node, mode SortMode) {
	switch mode {
	case SortByCreated:
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt > list[j].CreatedAt
		})
	case SortByModified:
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ModifiedAt > list[j].ModifiedAt
		})
	case SortBySize:
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Size > list[j].Size
		})
	default:
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
		})
	}
}
