// Package queue persists transcode jobs in SQLite and answers admission
// queries: which queued job runs next (priority, then queue time) and how
// many jobs currently occupy concurrency slots. State machine decisions live
// in the scheduler; this package only stores and orders.
package queue
