package handler

const (
	errInternalServer  = "Internal server error"
	errJobNotFound     = "Job not found"
	errDuplicateJob    = "Collection already active or queued for this account"
	errQueueFull       = "Job queue is full, try again later"
	errProfileNotFound = "Profile not found"
)
