package kafka

// Default topic names; both are overridable through KAFKA_STAGE_TOPIC / KAFKA_RUN_TOPIC.
const (
	TopicCounselStages = "counsel.stages"
	TopicCounselRuns   = "counsel.runs"
)
