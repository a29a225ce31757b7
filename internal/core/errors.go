// ABOUTME: Error taxonomy for ingestion and query paths
// ABOUTME: Parse, connectivity, and generation failures plus lookup sentinels
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSegments means a transcript had no timestamped body lines
	ErrNoSegments = errors.New("no timestamped segments found")
	// ErrNoTranscripts means no transcript files were found in any input directory
	ErrNoTranscripts = errors.New("no transcript files found")
	// ErrCollectionNotFound is returned by stores for an unknown collection
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrEpisodeNotFound means no indexed chunk belongs to the episode
	ErrEpisodeNotFound = errors.New("episode not found")
)

// ParseError is a transcript that could not be read or parsed.
// Ingestion logs it and skips the file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConnectivityError is an unreachable external service
type ConnectivityError struct {
	Service string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// GenerationError is a failed generator call during a request
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
