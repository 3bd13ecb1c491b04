// ABOUTME: Build identity for the bridge
// ABOUTME: Reported by -version, the health endpoint and mDNS TXT records
package version

const (
	// Version is the software version
	Version = "0.1.0"
	// Product is the product name
	Product = "spimeter"
	// Manufacturer identifies who built it
	Manufacturer = "spimeter"
)

// String renders the identity as "product version"
func String() string {
	return Product + " " + Version
}
