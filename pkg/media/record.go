package media

// Record is the normalized representation of one discoverable video item.
// It is immutable once parsed; two records with the same ID refer to the
// same media item regardless of which listing produced them.
type Record struct {
	// ID is the site-unique video identifier derived from its URL
	ID string
	// Title of the video, never empty ("Video <id>" fallback)
	Title string
	// PageURL is the absolute URL of the video page
	PageURL string
	// Uploader is the display name or nickname of the uploading user
	Uploader string
	// UploaderID is the numeric user id, "0" when not discoverable
	UploaderID string
	// Duration in seconds, 0 when unknown
	Duration int
	// ThumbnailURL of the preview image, may be empty
	ThumbnailURL string
	// PublishedAt is the raw upload timestamp text, may be empty
	PublishedAt string
	// StreamURL is a directly fetchable stream source, present only when
	// the listing exposed it without a second page fetch
	StreamURL string
}

// Valid reports whether the record satisfies the parser invariants
func (r Record) Valid() bool {
	return r.ID != "" && r.Duration >= 0
}
