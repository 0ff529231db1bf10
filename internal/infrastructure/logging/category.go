package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	MongoDB         Category = "MongoDB"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Chat            Category = "Chat"
	Moderation      Category = "Moderation"
	Sweeper         Category = "Sweeper"
	Tour            Category = "Tour"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Chat
	RoomLifecycle SubCategory = "RoomLifecycle"
	SendMessage   SubCategory = "SendMessage"
	Subscription  SubCategory = "Subscription"
	Decision      SubCategory = "Decision"

	// Sweeper
	ExpireMessages SubCategory = "ExpireMessages"
	ReinstateKicks SubCategory = "ReinstateKicks"
	PruneRooms     SubCategory = "PruneRooms"
	Gate           SubCategory = "ValidationGate"
	Scheduling     SubCategory = "Scheduling"

	// Messaging
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	AreaID       ExtraKey = "AreaId"
	Actor        ExtraKey = "Actor"
	Target       ExtraKey = "Target"
	Action       ExtraKey = "Action"
	Reason       ExtraKey = "Reason"
	MessageID    ExtraKey = "MessageId"
	Count        ExtraKey = "Count"
	RoutingKey   ExtraKey = "RoutingKey"
	Duration     ExtraKey = "Duration"
)
