package messages

type createMessageRequest struct {
	Text string `json:"text"`
}
