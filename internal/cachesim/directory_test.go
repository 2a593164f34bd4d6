package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryRequestReadFirstTimeInstallsExclusive(t *testing.T) {
	d := NewDirectory()
	result := d.RequestRead(0, 0x1000)
	assert.False(t, result.Found)
	assert.False(t, result.WasModified)

	holders := d.HoldersOf(0x1000)
	assert.Len(t, holders, 1)
	assert.Equal(t, Exclusive, holders[0].state)
}

func TestDirectoryRequestReadBySecondCoreDowngradesBothToShared(t *testing.T) {
	d := NewDirectory()
	d.RequestRead(0, 0x1000)
	result := d.RequestRead(1, 0x1000)

	assert.True(t, result.Found)
	assert.True(t, result.OtherHolderState)
	assert.Contains(t, result.DowngradedToShared, 0)

	for _, h := range d.HoldersOf(0x1000) {
		assert.Equal(t, Shared, h.state)
	}
}

func TestDirectoryRequestExclusiveInvalidatesOtherHolders(t *testing.T) {
	d := NewDirectory()
	d.RequestRead(0, 0x1000)
	d.RequestRead(1, 0x1000)

	result := d.RequestExclusive(1, 0x1000)
	assert.Contains(t, result.Invalidated, 0)
	assert.Equal(t, uint64(1), d.Invalidations())

	holders := d.HoldersOf(0x1000)
	assert.Len(t, holders, 1)
	assert.Equal(t, 1, holders[0].core)
	assert.Equal(t, Modified, holders[0].state)
}

func TestDirectoryRequestExclusiveReportsPriorModifiedOwner(t *testing.T) {
	d := NewDirectory()
	d.RequestExclusive(0, 0x1000)
	result := d.RequestExclusive(1, 0x1000)

	assert.True(t, result.WasModified)
	assert.Equal(t, 0, result.ModifiedOwner)
}

func TestDirectoryAnyOtherHolder(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.AnyOtherHolder(0, 0x1000))
	d.RequestRead(0, 0x1000)
	assert.False(t, d.AnyOtherHolder(0, 0x1000))
	assert.True(t, d.AnyOtherHolder(1, 0x1000))
}

func TestDirectoryInvalidateRemovesAllHolders(t *testing.T) {
	d := NewDirectory()
	d.RequestRead(0, 0x1000)
	d.RequestRead(1, 0x1000)
	d.Invalidate(0x1000)
	assert.Empty(t, d.HoldersOf(0x1000))
}

func TestDirectoryDropHolderRemovesOnlyThatCore(t *testing.T) {
	d := NewDirectory()
	d.RequestRead(0, 0x1000)
	d.RequestRead(1, 0x1000)
	d.DropHolder(0, 0x1000)

	holders := d.HoldersOf(0x1000)
	assert.Len(t, holders, 1)
	assert.Equal(t, 1, holders[0].core)
}

func TestDirectorySetHolderRecordsWithoutSnoopTraffic(t *testing.T) {
	d := NewDirectory()
	d.SetHolder(0, 0x1000, Shared)
	assert.Equal(t, uint64(0), d.Invalidations())
	holders := d.HoldersOf(0x1000)
	assert.Len(t, holders, 1)
	assert.Equal(t, Shared, holders[0].state)
}
