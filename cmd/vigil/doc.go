// Command vigil submits protest media for analysis, follows the analysis
// stream, and walks the reviewer through verifying detected officer
// appearances before committing them to the backend.
package main
