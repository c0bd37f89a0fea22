package constant

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusFinished   JobStatus = "finished"
	JobStatusError      JobStatus = "error"
)

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusFinished || s == JobStatusError
}

type Format string

const (
	FormatAudio Format = "mp3"
	FormatVideo Format = "mp4"
)

const DefaultFormat = FormatVideo

func (f Format) String() string {
	return string(f)
}

func (f Format) Valid() bool {
	return f == FormatAudio || f == FormatVideo
}

// Extension is the file extension of artifacts produced for the format.
func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	if f == FormatAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendMinIO StorageBackend = "minio"
)
