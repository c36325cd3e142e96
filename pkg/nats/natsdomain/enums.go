package natsdomain

// jetstream stream with the gateway jobs
const (
	JobsStream  = "jobs"
	JobsDurable = "gateway-workers"
)

// .js. - jetstream
//
// jobs.<kind>, e.g. jobs.scan
var SubjectsJetStream = [...]string{"jobs.>"}

const subjJobsPrefix = "jobs."

func JobSubject(kind string) string {
	return subjJobsPrefix + kind
}

// kind from a jobs.<kind> subject, "" for other subjects
func KindFromSubject(subject string) string {
	if len(subject) <= len(subjJobsPrefix) || subject[:len(subjJobsPrefix)] != subjJobsPrefix {
		return ""
	}
	return subject[len(subjJobsPrefix):]
}
