// Kartta - GCP Asset Graph Engine
// Fetch. Load. Cleanup.
package main

func main() {
	Execute()
}
