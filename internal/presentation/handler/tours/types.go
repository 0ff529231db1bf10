package tours

type createTourRequest struct {
	Destination string `json:"destination"`
}
