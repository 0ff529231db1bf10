package moderation

type moderationRequest struct {
	Target string `json:"target"`
}

type moderationResponse struct {
	Action  string `json:"action"`
	Target  string `json:"target"`
	Evicted int    `json:"evicted"`
}
