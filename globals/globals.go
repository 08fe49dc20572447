package globals

// Context keys
type ContextKey string

const ActorKey ContextKey = "actor"
const RequestIDKey ContextKey = "requestId"
