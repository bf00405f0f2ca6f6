package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeInvalidArchive: {
		Code:            CodeInvalidArchive,
		Retryable:       false,
		Description:     "File is not a Krisp export archive",
		SuggestedAction: "Re-export the recording from Krisp as a ZIP",
	},
	CodeEmptyContent: {
		Code:            CodeEmptyContent,
		Retryable:       false,
		Description:     "Archive has neither meeting notes nor a transcript",
		SuggestedAction: "Check that transcription finished before exporting",
	},
	CodeNotFound: {
		Code:            CodeNotFound,
		Retryable:       false,
		Description:     "File or folder does not exist",
		SuggestedAction: "Check the path passed to krisp-import",
	},
	CodePermission: {
		Code:            CodePermission,
		Retryable:       false,
		Description:     "Permission denied reading the archive or writing the vault",
		SuggestedAction: "Check file permissions on the source and vault folders",
	},
	CodeDuplicate: {
		Code:            CodeDuplicate,
		Retryable:       false,
		Description:     "A note for this recording already exists",
		SuggestedAction: "Use --duplicates overwrite or --duplicates suffix",
	},
	CodeCancelled: {
		Code:            CodeCancelled,
		Retryable:       false,
		Description:     "Import was cancelled",
		SuggestedAction: "Re-run the import",
	},
	CodeTimeout: {
		Code:            CodeTimeout,
		Retryable:       true,
		Description:     "Import exceeded its time limit",
		SuggestedAction: "Increase --timeout or import large archives individually",
	},
	CodeIncomplete: {
		Code:            CodeIncomplete,
		Retryable:       true,
		Description:     "Archive appears to be still downloading",
		SuggestedAction: "Wait for the download to finish; watch mode retries automatically",
	},
	CodeProcessing: {
		Code:            CodeProcessing,
		Retryable:       false,
		Description:     "Unexpected import failure",
		SuggestedAction: "Re-run with --debug and check the log output",
	},
}

// GetSuggestedAction returns the suggested action for an error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return ""
}

// GetDescription returns the description for an error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return ""
}
