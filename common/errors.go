package common

import (
	"errors"
)

var ErrInvalidManifest = errors.New("invalid manifest")
var ErrUnknownItem = errors.New("unknown item")
var ErrUnknownRole = errors.New("unknown role")
var ErrUnknownKey = errors.New("unknown retrieval key")
var ErrNetworkFailed = errors.New("network request failed")
var ErrCorruptDownload = errors.New("downloaded artifact failed checksum verification")
var ErrChecksumMismatch = errors.New("checksum mismatch")
var ErrRestricted = errors.New("artifact is restricted and must be acquired manually")
var ErrExtractionFailed = errors.New("archive extraction failed")
var ErrGroupIncomplete = errors.New("multi-part group is not fully retrieved")
var ErrDestinationNotWritable = errors.New("destination is not writable")
var ErrDatasetNotFound = errors.New("dataset not found")
