package apitest

// Route path constants of the fake DeepSight API, relative to BasePath.
const (
	BasePath = "/api/v1"

	RouteHealth = "/health"

	// Auth Routes
	RouteAuthLogin    = "/auth/login"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthRegister = "/auth/register"
	RouteTokenRefresh = "/auth/token/refresh"
	RouteTokenVerify  = "/auth/token/verify"

	// User Routes
	RouteUser         = "/user"
	RouteUserSettings = "/user/settings"

	// Image Routes
	RouteImages       = "/user/image/"
	RouteImageUpload  = "/user/image/upload/"
	RouteImage        = "/user/image/{id}/"
	RouteImageProcess = "/user/image/{id}/process/{model}/"

	// Processed Image Routes
	RouteProcessedImages = "/user/processedimage/"
	RouteProcessedImage  = "/user/processedimage/{id}/"

	// Model Routes
	RouteModels = "/models/"
	RouteModel  = "/models/{id}/"

	// Echo returns the request headers, for header composition tests.
	RouteEcho = "/echo"
)

// Names used with Server.Calls.
const (
	CallProbe   = "probe"
	CallRefresh = "refresh"
	CallVerify  = "verify"
	CallLogin   = "login"
	CallLogout  = "logout"
	CallEcho    = "echo"
)
