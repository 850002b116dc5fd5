// ABOUTME: Version constants for the chopshop binaries
// ABOUTME: Single place for product identification strings
package version

const (
	// Version is the release version of this build.
	Version = "0.2.1"

	// Product identifies the sampler in feed frames and discovery records.
	Product = "chopshop"

	// Manufacturer names the project in device info fields.
	Manufacturer = "Chop Shop"
)
