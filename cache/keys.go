package cache

// Keys in one place so writers and readers agree on what to invalidate.
const (
	ItemsPrefix = "items:"
	CountsKey   = "counts"
)

func ItemsKey(folder string) string { return ItemsPrefix + folder }
