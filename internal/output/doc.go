// Package output renders and writes buildwatch's auxiliary output: the
// effective build configuration as YAML or JSON, unified diffs between
// two renderings, and files such as esbuild's metafile that are rewritten
// after every build.
package output
