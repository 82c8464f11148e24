// Package queueaccess opens the queue backend selected by configuration and
// guards embedded queues against concurrent worker processes.
package queueaccess
