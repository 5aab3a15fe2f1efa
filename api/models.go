package api

import "time"

// Image is an uploaded source image.
type Image struct {
	ID          int       `json:"id"`
	Name        string    `json:"image_name"`
	Format      string    `json:"image_format"`
	Size        int       `json:"image_size"`
	UploadDate  time.Time `json:"upload_date"`
	IsProcessed bool      `json:"is_processed"`
}

// ProcessedImage is the output of running a model over an Image.
type ProcessedImage struct {
	ID           int       `json:"id"`
	ImageID      int       `json:"image"`
	ModelID      int       `json:"model"`
	CreationDate time.Time `json:"creation_date"`
	OutputFormat string    `json:"output_format"`
}

// Model is a processing model offered by the API.
type Model struct {
	ID          int     `json:"id"`
	Name        string  `json:"model_name"`
	Type        string  `json:"model_type"`
	Description string  `json:"model_description,omitempty"`
	Version     string  `json:"model_version,omitempty"`
	Accuracy    float64 `json:"accuracy,omitempty"`
	Category    string  `json:"category,omitempty"`
}
