package redis

const (
	keyPrefix     = "docstock/"
	keyPrefixTask = keyPrefix + "tasks/"

	// KeyTaskOrphanBlobs is the list of blobs written without a matching file row
	KeyTaskOrphanBlobs = keyPrefixTask + "orphan_blobs"
)
