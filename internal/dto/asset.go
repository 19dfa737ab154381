package dto

// CreateAssetRequest defines payload for registering a shared asset.
type CreateAssetRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Icon string `json:"icon" validate:"max=16"`
}
