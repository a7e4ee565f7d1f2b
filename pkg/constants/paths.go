package constants

// Backend REST paths consumed by the client (v1 contract).
const (
	PathSessions     = "/api/v1/sessions"
	PathCourses      = "/api/v1/courses"
	PathHealth       = "/health"
	PathAuthCallback = "/auth/callback"
)

// Frontend routes the orchestrator resolves navigation targets against.
const (
	PathWaitingRoom         = "/sessions/%s/waiting"
	PathCourseSessions      = "/courses/%s/sessions"
	PathStudentDashboard    = "/dashboard/student"
	PathInstructorDashboard = "/dashboard/instructor"
)

// DefaultPublicHost is the well-known free signaling host. Connects against
// it never carry a credential: the public deployment rejects tokened hellos.
const DefaultPublicHost = "meet.jit.si"

// SignalingPath is the websocket endpoint on a signaling host.
const SignalingPath = "/ws/signaling"
