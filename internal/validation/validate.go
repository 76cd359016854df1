// Package validation checks bucket names, object keys and user metadata before
// they reach an object store.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// maxKeyLength is the S3 limit on object key length in bytes.
const maxKeyLength = 1024

// ValidateBucketName validates that a bucket name is DNS-compliant according to AWS S3 rules.
// Returns an ErrConfig error if the bucket name is invalid.
func ValidateBucketName(bucket string) error {
	if err := validateBucketNameBasics(bucket); err != nil {
		return err
	}

	if err := validateBucketNameCharacters(bucket); err != nil {
		return err
	}

	if err := validateBucketNameStructure(bucket); err != nil {
		return err
	}

	return nil
}

// ValidateObjectKey validates that an object key is valid according to AWS S3 rules.
// Keys must not contain "." or ".." segments, so no key can escape its tree root.
func ValidateObjectKey(key string) error {
	if key == "" {
		return keyError(key, "object key cannot be empty")
	}
	return validateKeyBody(key)
}

// ValidatePrefix validates a key prefix used as a tree root. The empty prefix
// addresses the whole bucket.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validateKeyBody(strings.TrimSuffix(prefix, "/"))
}

func validateKeyBody(key string) error {
	if hasPathTraversal(key) {
		return keyError(key, "object key cannot contain path traversal sequences")
	}

	if len(key) > maxKeyLength {
		return keyError(key, fmt.Sprintf("object key cannot exceed %d bytes", maxKeyLength))
	}

	// S3 keys can contain any UTF-8 character but control characters break listings
	if hasControlCharacters(key) {
		return keyError(key, "object key cannot contain control characters")
	}

	return nil
}

// ValidateMetadata validates metadata keys and values according to S3 rules.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if err := validateMetadataKey(key); err != nil {
			return err
		}
		if err := validateMetadataValue(value); err != nil {
			return err
		}
	}

	return nil
}

func keyError(key, message string) error {
	return errors.New("validateObjectKey", errors.ErrConfig, nil).
		WithPath(key).
		WithMessage(message)
}

func bucketError(bucket, message string) error {
	return errors.New("validateBucketName", errors.ErrConfig, nil).
		WithTree(bucket).
		WithMessage(message)
}

// validateBucketNameBasics validates basic bucket name requirements
func validateBucketNameBasics(bucket string) error {
	if bucket == "" {
		return bucketError(bucket, "bucket name cannot be empty")
	}

	// Bucket names must be between 3 and 63 characters long
	if len(bucket) < 3 || len(bucket) > 63 {
		return bucketError(bucket, "bucket name must be between 3 and 63 characters long")
	}

	return nil
}

// validateBucketNameCharacters validates allowed characters in bucket names
func validateBucketNameCharacters(bucket string) error {
	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return bucketError(bucket, "bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	return nil
}

// validateBucketNameStructure validates bucket name structural requirements
func validateBucketNameStructure(bucket string) error {
	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return bucketError(bucket, "bucket name cannot start or end with a hyphen or dot")
	}

	if isIPAddress(bucket) {
		return bucketError(bucket, "bucket name cannot be formatted as an IP address")
	}

	if hasAdjacentSpecialChars(bucket) {
		return bucketError(bucket, "bucket name cannot contain two adjacent periods or hyphens")
	}

	if bucket == "localhost" {
		return bucketError(bucket, "bucket name cannot be a reserved word")
	}

	return nil
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

func hasAdjacentSpecialChars(bucket string) bool {
	for i := 0; i < len(bucket)-1; i++ {
		if (bucket[i] == '.' && bucket[i+1] == '.') || (bucket[i] == '-' && bucket[i+1] == '-') {
			return true
		}
	}
	return false
}

// isIPAddress checks if a string is formatted as an IPv4 address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}

// hasPathTraversal reports "." or ".." segments, a leading slash, or a
// Windows drive prefix.
func hasPathTraversal(key string) bool {
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return true
	}

	if len(key) >= 3 && key[1] == ':' && (key[2] == '\\' || key[2] == '/') {
		return true
	}

	for _, seg := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == "." || seg == ".." {
			return true
		}
	}

	return false
}

func hasControlCharacters(key string) bool {
	for _, char := range key {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}

// validateMetadataKey validates a metadata key according to S3 rules
func validateMetadataKey(key string) error {
	if key == "" {
		return metadataError("metadata key cannot be empty")
	}

	if len(key) > 128 {
		return metadataError("metadata key cannot exceed 128 characters")
	}

	for _, prefix := range []string{"aws:", "x-amz-", "x-amz:"} {
		if strings.HasPrefix(strings.ToLower(key), prefix) {
			return metadataError(fmt.Sprintf("metadata key cannot start with reserved prefix: %s", prefix))
		}
	}

	// Keys travel as HTTP header names
	for _, char := range key {
		if char <= 32 || char > 126 {
			return metadataError("metadata key can only contain printable ASCII characters")
		}
	}

	return nil
}

// validateMetadataValue validates a metadata value according to S3 rules
func validateMetadataValue(value string) error {
	if len(value) > 2048 {
		return metadataError("metadata value cannot exceed 2048 characters")
	}

	for _, char := range value {
		if !unicode.IsPrint(char) && char != '\t' {
			return metadataError("metadata value can only contain printable characters")
		}
	}

	return nil
}

func metadataError(message string) error {
	return errors.New("validateMetadata", errors.ErrConfig, nil).WithMessage(message)
}
