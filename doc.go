// dsk is the Dataset Kit. It contains the types and transformations used to
// prepare labeled, sparse feature data for learning, along with a number of
// helpers for getting that data in and out of other systems.
//
// Of principal importance in the DSK is the minimum cardinality
// transformation. The stages leading up to it, and the pieces it produces, are
// listed below. Interfaces and basic implementations of each stage are
// included in the root package, and implementations which rely on other
// software (Kafka, S3, BoltDB, LevelDB, Pilosa, Prometheus) are in
// sub-packages.
//
// 1. Source
//
//    A dsk.Source hands out one Example at a time until it returns io.EOF.
//    Sources exist for line separated JSON, CSV, files and directories on
//    disk, S3 buckets, HTTP posts and Kafka topics, and the fake package
//    generates synthetic examples. dsk.Load drains a Source into a
//    MutableDataset, observing the statistics of every feature along the way.
//
// 2. Dataset
//
//    A Dataset is anything which can iterate its Examples in a stable order,
//    and expose a FeatureMap of per-feature statistics, an OutputIndex and its
//    own Provenance. Nothing else is required of upstream implementations, so
//    transformations in this package work over any of them.
//
// 3. MinimumCardinalityDataset
//
//    NewMinimumCardinalityDataset walks a Dataset once and drops every
//    feature whose observed count is below a threshold, along with every
//    example which is left with no features. The result is immutable: it owns
//    copies of the surviving feature statistics, indexed by contiguous ids
//    which never change, and records exactly which features and how many
//    examples were removed.
//
//    Note that the feature map of the result keeps only features whose count
//    is strictly greater than the threshold, while examples keep features
//    whose count is greater than or equal to it. A feature observed exactly
//    threshold times therefore stays in the examples but has no id. Consumers
//    rely on this, so it is kept as is.
//
// 4. Provenance
//
//    Every dataset describes how it was produced with a Provenance, which
//    chains to the provenance of its source. Provenances flatten to an
//    ordered Record of typed primitives which can be stored (see the boltdb
//    package) and rehydrated into an equal Provenance later.
package dsk
