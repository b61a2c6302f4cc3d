// Package services defines the error taxonomy shared by the transcode
// pipeline: sentinel markers for each failure kind plus a Wrap helper that
// keeps component/operation context in the chain for errors.Is classification.
package services
