// Package all wires the built-in output backends into the storage factory.
// Import it for side effects:
//
//	import _ "poclean/internal/storage/all"
//
// after which storage.New accepts the kinds "csv" and "xlsx".
package all

import (
	_ "poclean/internal/storage/csvfile"
	_ "poclean/internal/storage/xlsxfile"
)
