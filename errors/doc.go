// Package errors provides standardized error handling for semevents.
//
// # Taxonomy
//
// Four families of failure show up in the system:
//
//   - Format errors (ErrFormat and the sentinels wrapping it): malformed headers,
//     duplicate or missing headers, bad Body-Length, spurious trailing bytes,
//     unsupported command or syntax values. Fatal to the current parse attempt.
//   - Configuration errors (ErrInvalidConfig, ErrMissingConfig): raised while
//     building schedulers, managers or loading config files, before any loop starts.
//   - Publish failures (ErrPublishFailed): per publisher, recorded and logged by the
//     scheduler, never propagated.
//   - Authorization denials are not errors at all; see package authz.
//
// # Classification
//
// Errors are classified as Transient, Invalid or Fatal. Format and configuration
// errors classify as Invalid. Wrap follows the "component.method: action failed: %w"
// pattern and keeps errors.Is working through the chain:
//
//	if err := d.Deserialize(chunk); err != nil {
//	    return errors.WrapInvalid(err, "Handler", "ServeHTTP", "deserialize body")
//	}
//
//	if errors.IsFormat(err) {
//	    d.Reset()
//	}
package errors
