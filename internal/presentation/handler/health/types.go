package health

type healthResponse struct {
	Status    string            `json:"status"` // ok or unhealthy
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}
