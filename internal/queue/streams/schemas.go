package streams

const (
	// ProgressEventType is the stream event carrying one job progress event.
	ProgressEventType = "job.progress"
	// ProgressEventVersion is the current payload version for ProgressEventType.
	ProgressEventVersion = "v1"
)

var baseDefinitions = []Definition{
	{
		EventType: ProgressEventType,
		Version:   ProgressEventVersion,
		Schema: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "job_id", "status", "progress", "timestamp"],
  "properties": {
    "type": {"type": "string", "enum": ["progress", "status"]},
    "job_id": {"type": "string", "minLength": 1},
    "video_id": {"type": "string"},
    "status": {"type": "string", "enum": ["created", "downloading", "transcribing", "analyzing", "researching", "completed", "failed"]},
    "step": {"type": "string"},
    "progress": {"type": "integer", "minimum": 0, "maximum": 100},
    "message": {"type": "string"},
    "data": {"type": "object"},
    "timestamp": {"type": "string"},
    "error": {"type": "string"}
  },
  "additionalProperties": false
}`,
	},
}

// RegisterBaseSchemas registers the built-in stream payload schemas.
func RegisterBaseSchemas(r *SchemaRegistry) error {
	for _, def := range baseDefinitions {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
