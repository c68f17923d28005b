package common

// TileRequest is the payload of a job: acquire and process the tiles of an area of interest
type TileRequest struct {
	ID         string   `json:"id"`
	AOI        string   `json:"aoi"` // WKT or GeoJSON
	DayRange   int      `json:"day_range"`
	CloudCover *float64 `json:"cloud_cover,omitempty"`
	MaxTiles   int      `json:"max_tiles,omitempty"`
}

// TileResult is the result of the processing of one tile
type TileResult struct {
	TileID      TileID               `json:"tile_id"`
	Metadata    map[string]*string   `json:"metadata,omitempty"`
	MetadataErr string               `json:"metadata_error,omitempty"`
	Images      map[IndexKind]string `json:"images,omitempty"`
	IndexErrs   map[IndexKind]string `json:"index_errors,omitempty"`
	Artifacts   []string             `json:"artifacts,omitempty"`
}

// Result is the event published at the end of a job
type Result struct {
	ID      string       `json:"id"`
	Outcome Outcome      `json:"outcome"`
	Message string       `json:"message,omitempty"`
	Tiles   []TileResult `json:"tiles,omitempty"`
}
