// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor: Converts raw bytes into plain text
//   - PostProcessorPipeline: Splits extracted text into chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Stores vectors and answers filtered nearest-neighbour queries
//   - DocumentStore: Document and chunk persistence
//   - BlobStore: Raw upload bytes
//   - RetrievalLogStore: Search observability records
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - SchedulerStore: Background task state. Without it, task history is not kept.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
