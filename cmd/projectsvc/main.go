// projectsvc serves the project-service API: login, bearer-token
// authentication and route-level role checks in front of the CRUD handlers.
//
// Usage:
//
//	# Apply the postgres schema
//	projectsvc migrate
//
//	# Create the first administrator
//	projectsvc create-user --username root --role ADMIN
//
//	# Start the server
//	projectsvc serve
package main

func main() {
	Execute()
}
