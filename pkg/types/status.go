package types

// NetworkStatus summarizes one registered network for GET /networks.
type NetworkStatus struct {
	// Name is the function name this network serves.
	// example: resnet50
	Name string `json:"name" example:"resnet50"`
	// RefCount is the number of accepted requests against this network
	// that are still queued or running.
	// example: 0
	RefCount int `json:"refcount" example:"0"`
	// Processing is true while the network is mid add/compile.
	Processing bool `json:"processing"`
}

// HostStatus is returned by GET /status.
type HostStatus struct {
	// Networks lists every registered or processing network.
	Networks []NetworkStatus `json:"networks"`
	// ActiveRequestCount is the current number of in-flight executor runs.
	// example: 1
	ActiveRequestCount int64 `json:"active_request_count" example:"1"`
	// MaxActiveRequests bounds ActiveRequestCount.
	// example: 4
	MaxActiveRequests int `json:"max_active_requests" example:"4"`
	// QueueSize is the current number of queued, not-yet-dispatched
	// requests.
	// example: 0
	QueueSize int `json:"queue_size" example:"0"`
	// MaxQueueSize bounds QueueSize.
	// example: 64
	MaxQueueSize int `json:"max_queue_size" example:"64"`
	// TotalRequestCount is the lifetime count of accepted requests.
	// example: 128
	TotalRequestCount int64 `json:"total_request_count" example:"128"`
	// RequestsFailed is the lifetime count of requests whose callback
	// carried a non-nil error.
	// example: 2
	RequestsFailed int64 `json:"requests_failed" example:"2"`
	// UptimeSeconds is how long this Host Manager has been running.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// ErrorResponse is the JSON body returned alongside non-2xx responses.
type ErrorResponse struct {
	// Error is a human-readable message.
	// example: network not found: resnet50
	Error string `json:"error" example:"network not found: resnet50"`
	// Code is the same value as the HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
