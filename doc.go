// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package bigbatch cuts large datasets into batches that are processed
	by cluster job arrays, and composes the resulting job groups into
	ordered, dependent pipelines.

	A bigbatch run has three data-plane steps:

	1. The partitioner (package partition) splits N items into one batch
	per (array element, task) pair of a job array. Each batch is written
	to its own file; together the batches contain every input item
	exactly once.

	2. The executor (package exec) runs inside one task of one array
	element. It reads its batch, applies a registered Func to every item
	in order, and writes one result per item, keyed by the item's
	identity.

	3. The merger (package merge) reads all result files of a completed
	job group and produces a single ordered artifact.

	The control plane is provided by package job, which describes
	submissions to an external scheduler, and package chain, which drives
	an ordered list of stages. Each stage computes its configuration, its
	job group, and its dependency on the previous stage's job handles from
	a pipeline state that is threaded from stage to stage.

	Bigbatch is not a scheduler: it decides how data is cut and in what
	order, and under which conditions, job groups are submitted. Placement,
	queuing and retries are left to the cluster scheduler.
*/
package bigbatch
