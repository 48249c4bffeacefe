package content

import "fmt"

// ImageFetchError reports a failed retrieval of an image referenced by a
// message. Fatal for the message that contains it.
type ImageFetchError struct {
	URL string
	Err error
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("failed to fetch image %s: %v", e.URL, e.Err)
}

func (e *ImageFetchError) Unwrap() error { return e.Err }
