// Command fanboxed downloads creator posts as zip archives.
//
// Posts can be downloaded in-process with `fanboxed download`, or handed to a
// background daemon (`fanboxed daemon`) with `fanboxed queue add`. Both paths
// share the same configuration file, output directory, and history database.
package main
